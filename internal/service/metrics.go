// metrics.go: доменные Prometheus-метрики жизненного цикла заявок.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// accessRequestsRecorded: регистрации заявок, outcome = created | existing.
	accessRequestsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_access_requests_recorded_total",
			Help: "Количество обращений к регистрации заявок на доступ",
		},
		[]string{"outcome"},
	)

	// decisionsTotal: решения администраторов, outcome = ok | conflict | not_found | error.
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_decisions_total",
			Help: "Количество попыток одобрить или отклонить заявку",
		},
		[]string{"decision", "outcome"},
	)

	// tokenValidations: проверки токенов. reason заполняется только для invalid.
	tokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_token_validations_total",
			Help: "Количество проверок временных токенов доступа",
		},
		[]string{"result", "reason"},
	)

	// validationCacheHits: попадания в кэш положительных результатов.
	validationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ag_token_validation_cache_hits_total",
			Help: "Количество проверок токена, обслуженных из кэша",
		},
	)
)
