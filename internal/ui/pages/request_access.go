// Пакет pages: HTML-страницы посетителя (templ).
// Разметка в request_access.templ, код генерируется командой templ generate.
package pages

// RequestAccessData: данные страницы ожидания решения.
type RequestAccessData struct {
	Code           string
	ScopeID        string
	Status         string
	StatusURL      string
	DocumentsURL   string
	PollIntervalMs int64
}

// ErrorData: данные страницы ошибки.
type ErrorData struct {
	Title   string
	Message string
}

// clientConfig: параметры опроса, передаются скрипту страницы как JSON.
type clientConfig struct {
	Status         string `json:"status"`
	StatusURL      string `json:"status_url"`
	DocumentsURL   string `json:"documents_url"`
	PollIntervalMs int64  `json:"poll_interval_ms"`
}

func (d RequestAccessData) pollConfig() clientConfig {
	return clientConfig{
		Status:         d.Status,
		StatusURL:      d.StatusURL,
		DocumentsURL:   d.DocumentsURL,
		PollIntervalMs: d.PollIntervalMs,
	}
}

func statusText(status string) string {
	switch status {
	case "approved":
		return "Доступ разрешён"
	case "denied":
		return "В доступе отказано"
	default:
		return "Ожидает решения администратора"
	}
}
