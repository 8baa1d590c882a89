// Package validation checks flat string maps against pipe-separated rules.
//
// framework/config flattens its settings into dotted keys and validates them
// here before boot:
//
//	v := validation.Make(map[string]string{
//	    "container.max_iterations": "10000",
//	    "log.level":                "info",
//	}, validation.Rules{
//	    "container.max_iterations": "required|integer|gte:1",
//	    "log.level":                "required|in:debug,info,warn,error",
//	})
//
//	if err := v.Err(); err != nil {
//	    // err is *Errors: {"errors": {"field": ["message"]}}
//	}
//
// # Available Rules
//
//   - required  : value must be non-empty
//   - integer   : parseable as int
//   - boolean   : parseable by strconv.ParseBool
//   - max:n     : at most n UTF-8 characters
//   - gte:n, lte:n: numeric bounds
//   - in:a,b,c  : value must be in the list
//   - alpha_dash: letters, numbers, dots, dashes, underscores
//   - list      : comma-separated alpha_dash names
//   - hostport  : a listen address such as ":9090" or "127.0.0.1:9090"
//   - sometimes : skip the remaining rules when the value is empty
//
// Processing a field stops at its first failing rule. An unknown rule name is
// reported as a failure.
package validation
