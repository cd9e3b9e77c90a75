package decl

// Placeholder stands in for a dynamically dispatched callee whose
// implementation is not visible in the translation unit.
type Placeholder struct {
	name string
	span Span
}

// NewPlaceholder creates a placeholder declaration named after the selector
func NewPlaceholder(name string, span Span) *Placeholder {
	return &Placeholder{name: name, span: span}
}

func (p *Placeholder) Kind() Kind      { return KindMethod }
func (p *Placeholder) Name() string    { return p.name }
func (p *Placeholder) HasBody() bool   { return false }
func (p *Placeholder) InSystem() bool  { return false }
func (p *Placeholder) Dependent() bool { return false }
func (p *Placeholder) Canonical() Decl { return p }
func (p *Placeholder) Span() Span      { return p.span }

// IsPlaceholder reports whether d was synthesized for an unresolved send
func IsPlaceholder(d Decl) bool {
	_, ok := d.(*Placeholder)
	return ok
}
