package dsl

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aretw0/weft/pkg/component"
	"github.com/aretw0/weft/pkg/token"
)

// Script is the structural result of parsing one graph description: the
// composite components it declares and the top-level application graph.
type Script struct {
	Name       string
	Components []*component.Component
	App        *component.App
}

// Register adds every component declared by the script to reg.
func (s *Script) Register(reg *component.Registry) error {
	for _, c := range s.Components {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("script %s: %w", s.Name, err)
		}
	}
	return nil
}

// Parse reads a textual graph description. name labels the resulting
// application; it is not part of the syntax.
func Parse(name, src string) (*Script, error) {
	p := &parser{lex: newLexer(src)}
	script, err := p.parseScript(name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return script, nil
}

// ParseFile reads a graph description from disk, naming the application
// after the file.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(path[strings.LastIndexByte(path, '/')+1:], ".weft")
	return Parse(name, string(data))
}

// Load parses src and registers its component declarations, returning the
// top-level application ready for resolution.
func Load(name, src string, reg *component.Registry) (*component.App, error) {
	script, err := Parse(name, src)
	if err != nil {
		return nil, err
	}
	if err := script.Register(reg); err != nil {
		return nil, err
	}
	return script.App, nil
}

type parser struct {
	lex    *lexer
	peeked []lexToken
}

func (p *parser) next() (lexToken, error) {
	if len(p.peeked) > 0 {
		t := p.peeked[0]
		p.peeked = p.peeked[1:]
		return t, nil
	}
	return p.lex.next()
}

func (p *parser) peek() (lexToken, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	p.peeked = append([]lexToken{t}, p.peeked...)
	return t, nil
}

func (p *parser) pushback(t lexToken) {
	p.peeked = append([]lexToken{t}, p.peeked...)
}

func (p *parser) expectPunct(text string) (lexToken, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tkPunct || t.text != text {
		return t, fmt.Errorf("line %d: expected '%s', got %s", t.line, text, t)
	}
	return t, nil
}

func (p *parser) expectIdent() (lexToken, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tkIdent {
		return t, fmt.Errorf("line %d: expected identifier, got %s", t.line, t)
	}
	return t, nil
}

func (p *parser) parseScript(name string) (*Script, error) {
	script := &Script{
		Name: name,
		App:  &component.App{Name: name},
	}
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tkEOF {
			break
		}
		if t.kind == tkIdent && t.text == "component" {
			comp, err := p.parseComponent()
			if err != nil {
				return nil, err
			}
			script.Components = append(script.Components, comp)
			continue
		}
		p.pushback(t)
		inst, wire, err := p.parseStatement(false)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			script.App.Instances = append(script.App.Instances, *inst)
		} else {
			script.App.Wires = append(script.App.Wires, *wire)
		}
	}
	return script, nil
}

// parseComponent reads a composite declaration:
//
//	component Name(p1, p2) in1, in2 -> out1 { body }
func (p *parser) parseComponent() (*component.Component, error) {
	name, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	comp := &component.Component{Name: name, Composite: &component.Composite{}}

	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tkPunct && t.text == "(" {
		p.next()
		comp.Params, err = p.parseIdentList(")")
		if err != nil {
			return nil, err
		}
	}

	inputs, err := p.parsePortList("->")
	if err != nil {
		return nil, err
	}
	for _, name := range inputs {
		comp.Inputs = append(comp.Inputs, component.In(name))
	}
	outputs, err := p.parsePortList("{")
	if err != nil {
		return nil, err
	}
	for _, name := range outputs {
		comp.Outputs = append(comp.Outputs, component.Out(name))
	}

	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tkPunct && t.text == "}" {
			p.next()
			break
		}
		if t.kind == tkEOF {
			return nil, fmt.Errorf("line %d: unterminated component %s", t.line, name)
		}
		inst, wire, err := p.parseStatement(true)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			comp.Composite.Instances = append(comp.Composite.Instances, *inst)
		} else {
			comp.Composite.Wires = append(comp.Composite.Wires, *wire)
		}
	}
	return comp, nil
}

// parseIdentList consumes "a, b, c <closer>", the closer included.
func (p *parser) parseIdentList(closer string) ([]string, error) {
	var names []string
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tkPunct && t.text == closer {
			return names, nil
		}
		if t.kind != tkIdent {
			return nil, fmt.Errorf("line %d: expected identifier or '%s', got %s", t.line, closer, t)
		}
		names = append(names, t.text)
		t, err = p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tkPunct && t.text == "," {
			p.next()
		}
	}
}

// parsePortList consumes "a, b <terminator>" where the list may be empty.
func (p *parser) parsePortList(terminator string) ([]string, error) {
	var names []string
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tkPunct && t.text == terminator {
			return names, nil
		}
		if t.kind == tkPunct && t.text == "," {
			continue
		}
		if t.kind != tkIdent {
			return nil, fmt.Errorf("line %d: expected port name or '%s', got %s", t.line, terminator, t)
		}
		names = append(names, t.text)
	}
}

// parseStatement reads one instance declaration or connection. inBody
// permits boundary ports and bare parameter references.
func (p *parser) parseStatement(inBody bool) (*component.Instance, *component.Wire, error) {
	t, err := p.next()
	if err != nil {
		return nil, nil, err
	}

	// Boundary source: .port > alias.inner
	if t.kind == tkPunct && t.text == "." {
		if !inBody {
			return nil, nil, fmt.Errorf("line %d: boundary port outside component body", t.line)
		}
		port, err := p.expectIdent()
		if err != nil {
			return nil, nil, err
		}
		if _, err := p.expectPunct(">"); err != nil {
			return nil, nil, err
		}
		to, err := p.parseEndpoint(inBody)
		if err != nil {
			return nil, nil, err
		}
		w := component.Connect(component.Boundary(port.text), to)
		return nil, &w, nil
	}

	if t.kind == tkIdent {
		switch t.text {
		case "true", "false", "null":
			// fall through to literal handling below
		default:
			nt, err := p.peek()
			if err != nil {
				return nil, nil, err
			}
			if nt.kind == tkPunct && nt.text == ":" {
				p.next()
				inst, err := p.parseInstance(t.text, inBody)
				return inst, nil, err
			}
			if nt.kind == tkPunct && nt.text == "." {
				p.next()
				port, err := p.expectIdent()
				if err != nil {
					return nil, nil, err
				}
				if _, err := p.expectPunct(">"); err != nil {
					return nil, nil, err
				}
				to, err := p.parseEndpoint(inBody)
				if err != nil {
					return nil, nil, err
				}
				w := component.Connect(component.Port(t.text, port.text), to)
				return nil, &w, nil
			}
			return nil, nil, fmt.Errorf("line %d: expected ':' or '.' after '%s', got %s", t.line, t.text, nt)
		}
	}

	// Literal source: "x" > dst.port
	p.pushback(t)
	lit, err := p.parseLiteral()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expectPunct(">"); err != nil {
		return nil, nil, err
	}
	to, err := p.parseEndpoint(inBody)
	if err != nil {
		return nil, nil, err
	}
	if to.Actor == "" {
		return nil, nil, fmt.Errorf("line %d: literal cannot feed a boundary port directly", t.line)
	}
	w := component.Inject(lit, to)
	return nil, &w, nil
}

func (p *parser) parseInstance(alias string, inBody bool) (*component.Instance, error) {
	ref, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	inst := &component.Instance{Name: alias, Component: ref}

	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if !(t.kind == tkPunct && t.text == "(") {
		return inst, nil
	}
	p.next()

	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tkPunct && t.text == ")" {
			return inst, nil
		}
		if t.kind == tkPunct && t.text == "," {
			continue
		}
		if t.kind != tkIdent {
			return nil, fmt.Errorf("line %d: expected argument name, got %s", t.line, t)
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		arg, err := p.parseArgValue(inBody)
		if err != nil {
			return nil, err
		}
		if inst.Args == nil {
			inst.Args = map[string]component.Argument{}
		}
		inst.Args[t.text] = arg
	}
}

// parseArgValue reads a literal or, inside a component body, a bare
// identifier referring to an enclosing formal parameter.
func (p *parser) parseArgValue(inBody bool) (component.Argument, error) {
	t, err := p.peek()
	if err != nil {
		return component.Argument{}, err
	}
	if t.kind == tkIdent && t.text != "true" && t.text != "false" && t.text != "null" {
		p.next()
		if !inBody {
			return component.Argument{}, fmt.Errorf("line %d: parameter reference '%s' outside component body", t.line, t.text)
		}
		return component.Ref(t.text), nil
	}
	lit, err := p.parseLiteral()
	if err != nil {
		return component.Argument{}, err
	}
	return component.Lit(lit), nil
}

// parseEndpoint reads the destination side of '>': alias.port, or .port
// inside a body.
func (p *parser) parseEndpoint(inBody bool) (component.Endpoint, error) {
	t, err := p.next()
	if err != nil {
		return component.Endpoint{}, err
	}
	if t.kind == tkPunct && t.text == "." {
		if !inBody {
			return component.Endpoint{}, fmt.Errorf("line %d: boundary port outside component body", t.line)
		}
		port, err := p.expectIdent()
		if err != nil {
			return component.Endpoint{}, err
		}
		return component.Boundary(port.text), nil
	}
	if t.kind != tkIdent {
		return component.Endpoint{}, fmt.Errorf("line %d: expected port reference, got %s", t.line, t)
	}
	if _, err := p.expectPunct("."); err != nil {
		return component.Endpoint{}, err
	}
	port, err := p.expectIdent()
	if err != nil {
		return component.Endpoint{}, err
	}
	return component.Port(t.text, port.text), nil
}

func (p *parser) parseDottedName() (string, error) {
	t, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	name := t.text
	for {
		t, err := p.peek()
		if err != nil {
			return "", err
		}
		if !(t.kind == tkPunct && t.text == ".") {
			return name, nil
		}
		p.next()
		part, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		name += "." + part.text
	}
}

func (p *parser) parseLiteral() (token.Token, error) {
	t, err := p.next()
	if err != nil {
		return token.Token{}, err
	}
	switch {
	case t.kind == tkString:
		return token.String(t.text), nil
	case t.kind == tkNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return token.Token{}, fmt.Errorf("line %d: bad number %q: %w", t.line, t.text, err)
		}
		return token.Number(n), nil
	case t.kind == tkIdent && t.text == "true":
		return token.Bool(true), nil
	case t.kind == tkIdent && t.text == "false":
		return token.Bool(false), nil
	case t.kind == tkIdent && t.text == "null":
		return token.Null(), nil
	case t.kind == tkPunct && t.text == "[":
		var items []token.Token
		for {
			nt, err := p.peek()
			if err != nil {
				return token.Token{}, err
			}
			if nt.kind == tkPunct && nt.text == "]" {
				p.next()
				return token.List(items...), nil
			}
			if nt.kind == tkPunct && nt.text == "," {
				p.next()
				continue
			}
			item, err := p.parseLiteral()
			if err != nil {
				return token.Token{}, err
			}
			items = append(items, item)
		}
	case t.kind == tkPunct && t.text == "{":
		entries := map[string]token.Token{}
		for {
			nt, err := p.next()
			if err != nil {
				return token.Token{}, err
			}
			if nt.kind == tkPunct && nt.text == "}" {
				return token.Map(entries), nil
			}
			if nt.kind == tkPunct && nt.text == "," {
				continue
			}
			if nt.kind != tkIdent && nt.kind != tkString {
				return token.Token{}, fmt.Errorf("line %d: expected map key, got %s", nt.line, nt)
			}
			if _, err := p.expectPunct(":"); err != nil {
				return token.Token{}, err
			}
			val, err := p.parseLiteral()
			if err != nil {
				return token.Token{}, err
			}
			entries[nt.text] = val
		}
	}
	return token.Token{}, fmt.Errorf("line %d: expected literal, got %s", t.line, t)
}
