// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

API:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests

Cache:
  - cache_hits_total{backend}, cache_misses_total{backend}
  - cache_errors_total{backend,operation}
  - cache_evictions_total{backend}

Realtime:
  - realtime_connections{transport}
  - realtime_events_published_total{type}
  - realtime_events_delivered_total{transport}
  - realtime_delivery_misses_total{transport,reason}
  - realtime_commands_received_total{type}

Chat and store:
  - chat_messages_sent_total{kind}
  - chat_conversations_created_total
  - store_operation_duration_seconds{operation}

Resilience:
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}
  - external_api_requests_total{service,outcome}
  - external_api_request_duration_seconds{service}

Endpoint labels use chi route patterns (e.g. /api/v1/messages/{conversationId})
to keep cardinality bounded.
*/
package metrics
