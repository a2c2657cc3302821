/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Hooks are plain domain.LifecycleHooks values, so they can be combined with
any caller-provided hooks through Combine.
*/
package observability
