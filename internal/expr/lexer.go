package expr

import (
	"fmt"
	"strconv"

	"astock-backtest-lab/internal/domain"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenTerm
	tokenNumber
	tokenCompare
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenStar
)

type token struct {
	kind tokenKind
	text string
	term Term    // set when kind == tokenTerm
	num  float64 // set when kind == tokenNumber
}

// lex splits the source into tokens. "!=" is matched before "!", and a
// term offset ("D5MA-2") only binds when the minus sign and digits follow
// the term with no space in between.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokenLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokenRParen, text: ")"})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokenStar, text: "*"})
			i++
		case c == '&':
			if i+1 >= len(src) || src[i+1] != '&' {
				return nil, fmt.Errorf("single '&' at position %d", i)
			}
			toks = append(toks, token{kind: tokenAnd, text: "&&"})
			i += 2
		case c == '|':
			if i+1 >= len(src) || src[i+1] != '|' {
				return nil, fmt.Errorf("single '|' at position %d", i)
			}
			toks = append(toks, token{kind: tokenOr, text: "||"})
			i += 2
		case c == '>' || c == '<':
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
			}
			toks = append(toks, token{kind: tokenCompare, text: op})
			i += len(op)
		case c == '=':
			if i+1 >= len(src) || src[i+1] != '=' {
				return nil, fmt.Errorf("single '=' at position %d", i)
			}
			toks = append(toks, token{kind: tokenCompare, text: "=="})
			i += 2
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokenCompare, text: "!="})
				i += 2
			} else {
				toks = append(toks, token{kind: tokenNot, text: "!"})
				i++
			}
		case c == 'D' || c == 'W' || c == 'M':
			tok, n, err := lexTerm(src[i:])
			if err != nil {
				return nil, fmt.Errorf("%v at position %d", err, i)
			}
			toks = append(toks, tok)
			i += n
		case c >= '0' && c <= '9' || c == '-':
			tok, n, err := lexNumber(src[i:])
			if err != nil {
				return nil, fmt.Errorf("%v at position %d", err, i)
			}
			toks = append(toks, tok)
			i += n
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	return toks, nil
}

// lexTerm reads a moving-average term starting at s[0], which is one of
// D, W or M. The shape is <letter><digits>MA with an optional -<digits>
// offset attached directly after.
func lexTerm(s string) (token, int, error) {
	var g domain.Granularity
	switch s[0] {
	case 'D':
		g = domain.GranularityDaily
	case 'W':
		g = domain.GranularityWeekly
	case 'M':
		g = domain.GranularityMonthly
	}

	j := 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == 1 {
		return token{}, 0, fmt.Errorf("malformed term starting with %q", s[0])
	}
	period, err := strconv.Atoi(s[1:j])
	if err != nil {
		return token{}, 0, fmt.Errorf("bad period in term: %v", err)
	}
	if j+1 >= len(s) || s[j] != 'M' || s[j+1] != 'A' {
		return token{}, 0, fmt.Errorf("malformed term starting with %q", s[0])
	}
	j += 2

	offset := 0
	if j+1 < len(s) && s[j] == '-' && s[j+1] >= '0' && s[j+1] <= '9' {
		k := j + 1
		for k < len(s) && s[k] >= '0' && s[k] <= '9' {
			k++
		}
		offset, err = strconv.Atoi(s[j+1 : k])
		if err != nil {
			return token{}, 0, fmt.Errorf("bad offset in term: %v", err)
		}
		j = k
	}

	t := Term{Gran: g, Period: period, Offset: offset}
	return token{kind: tokenTerm, text: s[:j], term: t}, j, nil
}

// lexNumber reads a numeric literal with an optional leading minus and
// an optional fractional part.
func lexNumber(s string) (token, int, error) {
	j := 0
	if s[j] == '-' {
		j++
	}
	start := j
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == start {
		return token{}, 0, fmt.Errorf("minus sign without digits")
	}
	if j < len(s) && s[j] == '.' {
		j++
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
	}
	v, err := strconv.ParseFloat(s[:j], 64)
	if err != nil {
		return token{}, 0, fmt.Errorf("bad number %q: %v", s[:j], err)
	}
	return token{kind: tokenNumber, text: s[:j], num: v}, j, nil
}
