/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcomes.
const (
	OutcomeFound  = "found"
	OutcomeAbsent = "absent"
	OutcomeError  = "error"
)

var (
	once sync.Once

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "queries_total",
			Help:      "Count of gateway queries by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	provisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "settings_provisioned_total",
			Help:      "Count of provisioning calls by whether a record was created.",
		},
		[]string{"created"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(queries, provisioned)
	})
}

func IncQuery(operation, outcome string) {
	queries.WithLabelValues(operation, outcome).Inc()
}

func IncProvisioned(created bool) {
	if created {
		provisioned.WithLabelValues("true").Inc()
		return
	}
	provisioned.WithLabelValues("false").Inc()
}
