package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// TemplateCertificateIssued carries the certificate PDF to an attendee.
const TemplateCertificateIssued = "certificate_issued"

type emailTemplate struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

var templates = map[string]emailTemplate{
	TemplateCertificateIssued: {
		subject: texttemplate.Must(texttemplate.New("subject").Parse(`Your certificate for {{.event_name}}`)),
		body: htmltemplate.Must(htmltemplate.New("body").Parse(`<p>Hello {{.name}},</p>
<p>Thank you for attending <strong>{{.event_name}}</strong> on {{.event_date}}.</p>
<p>Your certificate is attached to this email. You can also download it at any time from
<a href="{{.certificate_url}}">{{.certificate_url}}</a>.</p>
<p>Certificate code: {{.certificate_code}}</p>`)),
	},
}

// Render executes the subject and body of a registered template.
func Render(templateID string, vars map[string]string) (subject, body string, err error) {
	tpl, ok := templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateID)
	}
	var sb, bb bytes.Buffer
	if err := tpl.subject.Execute(&sb, vars); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", templateID, err)
	}
	if err := tpl.body.Execute(&bb, vars); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", templateID, err)
	}
	return sb.String(), bb.String(), nil
}
