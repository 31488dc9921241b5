// Package assertions evaluates API check expectations against a response:
// status and header checks, gjson path expressions into the JSON body and
// JSON Schema validation with gojsonschema.
//
// Any operator can be negated with a "not " prefix, e.g. "not contains".
package assertions
