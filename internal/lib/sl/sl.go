// Package sl содержит вспомогательные функции для работы с логгером slog:
// создание логгера по окружению и типовые поля лога.
package sl

import (
	"io"
	"log/slog"
)

const envLocal = "local"

// New логгер процесса: текст с уровнем debug локально, JSON с уровнем info
// в остальных окружениях.
func New(env string, w io.Writer) *slog.Logger {
	if env == envLocal {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции, как его пишут обработчики и сервисы.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// Masked возвращает атрибут, в котором видны только последние четыре символа значения.
// Используется для телефонов и идентификаторов платежей.
func Masked(key, value string) slog.Attr {
	const visible = 4
	if len(value) <= visible {
		return slog.String(key, "****")
	}
	return slog.String(key, "****"+value[len(value)-visible:])
}
