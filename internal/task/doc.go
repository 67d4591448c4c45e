// Package task manages background job submission, processing, and lifecycle.
// Front-ends persist a task record and publish a message on the broker;
// workers consume messages, run the registered handler and record the
// outcome. Task records survive restarts, so stale work can be recovered
// even when the broker lost its messages.
package task
