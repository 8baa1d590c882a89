// Package errors defines the failure taxonomy of the container.
//
// Every error produced by the resolver, the instantiation service and the
// registry is either a *ContainerError carrying one of the codes below or a
// *GraphError. Both match the exported sentinels through errors.Is:
//
//	if errors.Is(err, ierrors.ErrNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ── Codes ─────────────────────────────────────────────────────────────────────

const (
	CodeGraphResolution   = "GRAPH_RESOLUTION"
	CodeInstantiation     = "INSTANTIATION"
	CodeFactoryProduct    = "FACTORY_PRODUCT"
	CodePostInit          = "POST_INIT"
	CodePreDestroy        = "PRE_DESTROY"
	CodeDoubleInit        = "DOUBLE_INIT"
	CodeNotFound          = "NOT_FOUND"
	CodeProxyAlreadySet   = "PROXY_ALREADY_SET"
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"
)

// ── Sentinels ─────────────────────────────────────────────────────────────────

var (
	ErrGraphResolution   = &ContainerError{Code: CodeGraphResolution, Message: "dependency graph cannot be resolved"}
	ErrInstantiation     = &ContainerError{Code: CodeInstantiation, Message: "component instantiation failed"}
	ErrFactoryProduct    = &ContainerError{Code: CodeFactoryProduct, Message: "factory product failed"}
	ErrPostInit          = &ContainerError{Code: CodePostInit, Message: "post-init hook failed"}
	ErrPreDestroy        = &ContainerError{Code: CodePreDestroy, Message: "pre-destroy hook failed"}
	ErrDoubleInit        = &ContainerError{Code: CodeDoubleInit, Message: "container already initialized"}
	ErrNotFound          = &ContainerError{Code: CodeNotFound, Message: "component not found"}
	ErrProxyAlreadySet   = &ContainerError{Code: CodeProxyAlreadySet, Message: "proxy instance already created"}
	ErrInvalidDescriptor = &ContainerError{Code: CodeInvalidDescriptor, Message: "invalid component descriptor"}
)

// ContainerError is a coded error scoped to one component.
type ContainerError struct {
	Code      string
	Component string
	Message   string
	Cause     error
}

func (e *ContainerError) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(e.Component)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ContainerError) Unwrap() error { return e.Cause }

// Is matches any *ContainerError with the same non-empty code, so a concrete
// failure compares equal to its sentinel.
func (e *ContainerError) Is(target error) bool {
	t, ok := target.(*ContainerError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

func newError(code, component, message string, cause error) *ContainerError {
	return &ContainerError{Code: code, Component: component, Message: message, Cause: cause}
}

// Instantiation reports a failed initializer call.
func Instantiation(component string, cause error) *ContainerError {
	return newError(CodeInstantiation, component, "cannot create instance", cause)
}

// ArgumentCount reports an initializer called with the wrong number of arguments.
func ArgumentCount(component string, want, got int) *ContainerError {
	return newError(CodeInstantiation, component,
		fmt.Sprintf("invalid parameters count: want %d, got %d", want, got), nil)
}

// FactoryProduct reports a failed producer call.
func FactoryProduct(component string, cause error) *ContainerError {
	return newError(CodeFactoryProduct, component, "cannot produce factory product", cause)
}

// PostInit reports a failed post-init hook.
func PostInit(component string, cause error) *ContainerError {
	return newError(CodePostInit, component, "cannot invoke post-init hook", cause)
}

// PreDestroy reports a failed pre-destroy hook.
func PreDestroy(component string, cause error) *ContainerError {
	return newError(CodePreDestroy, component, "cannot invoke pre-destroy hook", cause)
}

// NotFound reports a lookup miss on an operation that requires a component.
func NotFound(component string) *ContainerError {
	return newError(CodeNotFound, component, "component was not found", nil)
}

// DoubleInit reports a second boot of the same container.
func DoubleInit() *ContainerError {
	return newError(CodeDoubleInit, "", "container already initialized", nil)
}

// ProxyAlreadySet reports an attempt to replace an installed proxy.
func ProxyAlreadySet(component string) *ContainerError {
	return newError(CodeProxyAlreadySet, component, "proxy instance already created", nil)
}

// InvalidDescriptor reports a malformed registration.
func InvalidDescriptor(component, reason string) *ContainerError {
	return newError(CodeInvalidDescriptor, component, reason, nil)
}

// Recovered converts a recovered panic value into an error.
func Recovered(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}

// ── Graph errors ──────────────────────────────────────────────────────────────

// Unresolved describes one component still waiting when the iteration bound
// was reached.
type Unresolved struct {
	Component string
	// Waiting lists requirements with at least one known provider that never
	// became available.
	Waiting []string
	// Missing lists requirements no known component can satisfy.
	Missing []string
}

// GraphError is returned when the starvation counter reaches the configured
// bound. It carries every still-pending entry for diagnosis.
type GraphError struct {
	MaxIterations int
	Rotations     int
	Pending       []Unresolved
	// Cycle is one dependency cycle among pending entries, if any was found.
	Cycle []string
}

func (e *GraphError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "maximum number of allowed iterations was reached (%d); remaining components:", e.MaxIterations)
	for _, p := range e.Pending {
		b.WriteString("\n  ")
		b.WriteString(p.Component)
		if len(p.Missing) > 0 {
			fmt.Fprintf(&b, " missing [%s]", strings.Join(p.Missing, ", "))
		}
		if len(p.Waiting) > 0 {
			fmt.Fprintf(&b, " waiting on [%s]", strings.Join(p.Waiting, ", "))
		}
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, "\ncycle: %s", strings.Join(e.Cycle, " -> "))
	}
	return b.String()
}

func (e *GraphError) Is(target error) bool {
	return target == ErrGraphResolution
}

// PendingNames returns the names of the unresolved components.
func (e *GraphError) PendingNames() []string {
	names := make([]string, len(e.Pending))
	for i, p := range e.Pending {
		names[i] = p.Component
	}
	return names
}

// AsGraphError is a shorthand for errors.As with *GraphError.
func AsGraphError(err error) (*GraphError, bool) {
	var ge *GraphError
	ok := errors.As(err, &ge)
	return ge, ok
}
