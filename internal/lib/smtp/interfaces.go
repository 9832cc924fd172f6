// Package smtp STARTTLS-транспорт до почтового сервера.
package smtp

import "io"

// Client подмножество *smtp.Client, нужное для отправки письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает аутентифицированную сессию с сервером.
type TransportInterface interface {
	Connect() (Client, error)
	Sender() string
}
