// Package env interpolates {{...}} placeholders in check files.
//
// A placeholder is one of:
//   - {{name}}: a variable, a resolved setting, or a value captured by an earlier check
//   - {{$NAME}}: an environment variable
//   - {{fn(args)}}: a built-in function such as uuid(), timestamp() or randomEmail()
//
// Unresolved placeholders are left in place and logged.
package env
