// Package notify — отправка уведомлений о завершении run по email.
//
// SMTPNotifier отправляет HTML-письмо через SMTP-сервер (net/smtp),
// с PLAIN-аутентификацией, если заданы логин и пароль.
package notify
