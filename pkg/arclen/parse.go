package arclen

import (
	"strconv"

	"honnef.co/go/curve"

	"github.com/matzehuels/flowlines/pkg/errors"
)

// Parse reads an SVG path description into path elements.
//
// Supported commands are M, L, H, V, C, Q and Z in absolute and relative
// form. Argument groups may repeat without restating the command; extra
// pairs after a move-to are line-tos. Separators are whitespace and commas,
// and numbers may run together where a sign or second decimal point makes
// the boundary unambiguous ("M10-5.5.5").
func Parse(desc string) (curve.BezPath, error) {
	p := &pathParser{s: desc}
	var (
		path       curve.BezPath
		cur, start curve.Point
	)

	for {
		p.skipSeparators()
		if p.eof() {
			break
		}
		cmd := p.s[p.pos]
		if !isCommand(cmd) {
			return nil, p.errorf("expected command, got %q", cmd)
		}
		p.pos++

		if len(path) == 0 && cmd != 'M' && cmd != 'm' {
			return nil, p.errorf("path must begin with a move-to, got %q", cmd)
		}

		rel := cmd >= 'a'
		if cmd == 'Z' || cmd == 'z' {
			path.ClosePath()
			cur = start
			continue
		}

		for first := true; first || p.hasNumber(); first = false {
			switch cmd | 0x20 {
			case 'm':
				pt := p.point(rel, cur)
				if first {
					path.MoveTo(pt)
					start = pt
				} else {
					path.LineTo(pt)
				}
				cur = pt
			case 'l':
				cur = p.point(rel, cur)
				path.LineTo(cur)
			case 'h':
				x := p.number()
				if rel {
					x += cur.X
				}
				cur = curve.Pt(x, cur.Y)
				path.LineTo(cur)
			case 'v':
				y := p.number()
				if rel {
					y += cur.Y
				}
				cur = curve.Pt(cur.X, y)
				path.LineTo(cur)
			case 'c':
				c1 := p.point(rel, cur)
				c2 := p.point(rel, cur)
				end := p.point(rel, cur)
				path.CubicTo(c1, c2, end)
				cur = end
			case 'q':
				c := p.point(rel, cur)
				end := p.point(rel, cur)
				path.QuadTo(c, end)
				cur = end
			default:
				return nil, errors.New(errors.ErrCodeUnsupported, "unsupported path command %q", cmd)
			}
			if p.err != nil {
				return nil, p.err
			}
		}
	}

	if len(path) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "empty path description")
	}
	return path, nil
}

type pathParser struct {
	s   string
	pos int
	err error
}

func (p *pathParser) eof() bool { return p.pos >= len(p.s) }

func (p *pathParser) skipSeparators() {
	for !p.eof() {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r', ',':
			p.pos++
		default:
			return
		}
	}
}

func (p *pathParser) hasNumber() bool {
	p.skipSeparators()
	if p.eof() {
		return false
	}
	c := p.s[p.pos]
	return isDigit(c) || c == '-' || c == '+' || c == '.'
}

func (p *pathParser) number() float64 {
	if p.err != nil {
		return 0
	}
	if !p.hasNumber() {
		p.err = p.errorf("expected number")
		return 0
	}

	begin := p.pos
	if c := p.s[p.pos]; c == '-' || c == '+' {
		p.pos++
	}
	p.digits()
	if !p.eof() && p.s[p.pos] == '.' {
		p.pos++
		p.digits()
	}
	if !p.eof() && (p.s[p.pos] == 'e' || p.s[p.pos] == 'E') {
		// Only an exponent when digits follow; otherwise 'e' is not ours.
		save := p.pos
		p.pos++
		if !p.eof() && (p.s[p.pos] == '-' || p.s[p.pos] == '+') {
			p.pos++
		}
		if p.eof() || !isDigit(p.s[p.pos]) {
			p.pos = save
		} else {
			p.digits()
		}
	}

	v, err := strconv.ParseFloat(p.s[begin:p.pos], 64)
	if err != nil {
		p.err = errors.Wrap(errors.ErrCodeInvalidFormat, err, "bad number at offset %d", begin)
		return 0
	}
	return v
}

func (p *pathParser) point(rel bool, cur curve.Point) curve.Point {
	x := p.number()
	y := p.number()
	if rel {
		return curve.Pt(cur.X+x, cur.Y+y)
	}
	return curve.Pt(x, y)
}

func (p *pathParser) digits() {
	for !p.eof() && isDigit(p.s[p.pos]) {
		p.pos++
	}
}

func (p *pathParser) errorf(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidFormat, "offset %d: "+format, append([]any{p.pos}, args...)...)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isCommand(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
