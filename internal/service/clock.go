package service

import "time"

// Clock: источник текущего времени для сравнения сроков действия.
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает системное время в UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// truncateInstant приводит момент к UTC с точностью до миллисекунды,
// которую сохраняют все драйверы хранилища.
func truncateInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
