// Package logging provides structured JSON logging with size-based file
// rotation. Logs land in ~/.quarry/logs/ so the MCP stdio transport keeps
// stdout free for protocol traffic; interactive commands may mirror logs
// to stderr.
package logging
