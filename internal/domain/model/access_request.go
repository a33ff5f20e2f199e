// Пакет model содержит доменные модели шлюза доступа к архиву документов.
package model

import "time"

// Status: состояние заявки на доступ.
type Status string

// Допустимые состояния заявки. approved и denied терминальные.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// IsTerminal сообщает, что из состояния нет переходов.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// IsValid проверяет, что значение входит в перечисление.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied:
		return true
	}
	return false
}

// AccessRequest: заявка посетителя на доступ к документам одного woreda.
type AccessRequest struct {
	ID        string
	Code      string
	OriginIP  string
	Status    Status
	ScopeID   string
	CreatedAt time.Time

	// Заполняются вместе и только при Status = approved.
	Token          *string
	TokenExpiresAt *time.Time

	// Аудит решения администратора, пишутся тем же compare-and-set.
	DecidedAt *time.Time
	DecidedBy *string
}

// NewAccessRequest: входные данные для создания заявки.
type NewAccessRequest struct {
	ID        string
	Code      string
	OriginIP  string
	ScopeID   string
	CreatedAt time.Time
}

// Transition: атомарный переход заявки из From в To.
// Token и TokenExpiresAt задаются только при To = approved.
type Transition struct {
	ID             string
	From           Status
	To             Status
	Token          *string
	TokenExpiresAt *time.Time
	DecidedAt      time.Time
	DecidedBy      string
}
