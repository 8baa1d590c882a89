// Package http holds small request and response helpers for the framework's
// own HTTP surface (see framework/inspect).
//
//	func show(w http.ResponseWriter, r *http.Request) {
//	    req, res := gohttp.NewRequest(r), gohttp.NewResponse(w)
//	    if v := req.Validate(validation.Rules{"qualifier": "sometimes|alpha_dash"}); v.Fails() {
//	        res.ValidationError(v.Errors())
//	        return
//	    }
//	    res.Success(map[string]any{"type": req.RouteParam("type")})
//	}
package http
