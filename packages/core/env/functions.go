package env

import (
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Func is a built-in placeholder function.
type Func func(args []string) any

// Functions is the table of built-ins available as {{name(args)}}.
type Functions struct {
	funcs map[string]Func
	log   logrus.FieldLogger
}

func NewFunctions() *Functions {
	l := logrus.New()
	l.SetOutput(io.Discard)
	f := &Functions{funcs: make(map[string]Func), log: l}

	f.funcs["uuid"] = func([]string) any { return uuid.NewString() }
	f.funcs["now"] = func([]string) any { return time.Now().UTC().Format(time.RFC3339) }
	f.funcs["timestamp"] = func([]string) any { return time.Now().Unix() }
	f.funcs["timestampMs"] = func([]string) any { return time.Now().UnixMilli() }
	f.funcs["date"] = funcDate
	f.funcs["random"] = f.funcRandom
	f.funcs["randomString"] = f.funcRandomString
	f.funcs["randomEmail"] = funcRandomEmail
	f.funcs["base64"] = funcBase64
	return f
}

// Register adds or replaces a function.
func (f *Functions) Register(name string, fn Func) {
	f.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as randomString(12).
func (f *Functions) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false
	}

	fn, ok := f.funcs[matches[1]]
	if !ok {
		return nil, false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return fn(args), true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	quote := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func (f *Functions) intArg(fn string, args []string, i, fallback int) int {
	if len(args) <= i {
		return fallback
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		f.log.WithField("function", fn).Warnf("argument %q is not an integer, using %d", args[i], fallback)
		return fallback
	}
	return v
}

func (f *Functions) funcRandom(args []string) any {
	lo := f.intArg("random", args, 0, 0)
	hi := f.intArg("random", args, 1, 100)
	if hi < lo {
		lo, hi = hi, lo
	}
	return rand.Intn(hi-lo+1) + lo
}

func (f *Functions) funcRandomString(args []string) any {
	return randomString(f.intArg("randomString", args, 0, 16), "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
}

func funcRandomEmail([]string) any {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return fmt.Sprintf("%s@%s.com", user, domain)
}

func funcDate(args []string) any {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format)
}

func funcBase64(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func randomString(length int, charset string) string {
	if length < 0 {
		length = 0
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
