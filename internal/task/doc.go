// Package task runs periodic background jobs.
//
// A Scheduler wraps a robfig/cron runner. Each job runs on an "@every"
// schedule; runs of the same job never overlap, panics are recovered and
// logged, and Stop waits for in-flight runs to return.
package task
