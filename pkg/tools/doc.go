// Package tools defines the tool value exposed over MCP and the helpers
// vendor integrations use to format results.
//
// A tool handler never fails: every outcome, including configuration and
// vendor errors, is a string. Strings starting with "Error:" or "❌" are
// reported to MCP clients as error results.
package tools
