// Package httpapi serves the scheduling HTTP API.
//
// Routes:
//   - POST /api/auto-schedule  {"task_ids":[...]}
//   - GET  /api/hours
//   - PUT  /api/hours          [{"day":"Monday","start":"08:00","end":"22:00"}]
//   - GET  /healthz
//
// Every /api route requires "Authorization: Bearer <token>". Requests are
// rate-limited per owner.
package httpapi
