// Package memory provides an in-memory [credauth.SubjectProvider] with
// bcrypt credential hashing. It backs the runnable example, the load-test
// harness, and integration-style tests; production deployments implement
// SubjectProvider over their own subject database instead.
package memory
