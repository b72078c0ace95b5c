package user

import (
	"net/mail"

	"github.com/academia/lms/core"
)

type mailData struct {
	Name     string
	Username string
	Role     string
}

func newMailData(usr User) mailData {
	name := usr.FullName
	if name == "" {
		name = usr.Username
	}
	return mailData{Name: name, Username: usr.Username, Role: usr.RoleName()}
}

func (svc *service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: newMailData(usr),
	})
}

func (svc *service) sendPasswordChangedMail(usr User) {
	if svc.mailSvc == nil || usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Your password was changed",
		TemplateName: "password_changed",
		TemplateData: newMailData(usr),
	})
}
