/*
Package api exposes flightwatch health to the outside world.

Two surfaces are provided:

  - HealthServer: plain HTTP with /health (liveness), /ready (coordinator
    status plus membership watch state) and /metrics (Prometheus).
  - GRPCServer: the standard grpc.health.v1 service. Its status follows the
    recovery coordinator through SetStatus, which is registered with
    Coordinator.OnStatusChange.

Readiness rules:

	coordinator OK   and  membership standalone or watching   -> 200 ready
	anything else                                             -> 503 not ready

A watch that gave up after exhausting its retries is reported as degraded.
The coordinator stays OK in that case, since no automatic restart happens.
*/
package api
