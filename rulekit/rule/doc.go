// Package rule compiles boolean eligibility rules such as
//
//	age > 30 AND department = 'Sales'
//
// into an AST, combines several trees into one and evaluates trees against
// records.
//
// Every function in this package is pure. Trees are immutable once built,
// so a single tree may be evaluated from many goroutines at once.
package rule
