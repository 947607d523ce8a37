package errmsg

import (
	"errors"
	"regexp"
)

// Fallback messages.
const (
	RequestFailed   = "Request failed"
	ConstraintsHint = "Please check the inputs. If the name already exists, choose a different one."
)

var serializerErr = regexp.MustCompile(`(?i)internal serializer error`)

// Carrier is implemented by errors that hold a decoded server body.
type Carrier interface {
	error
	ErrorPayload() Payload
}

// Detail returns the message the server put in the body's "detail" field,
// if any. A non-string detail is searched for its first message.
func Detail(body Payload) (string, bool) {
	d, ok := body.Field("detail")
	if !ok || d.IsNull() {
		return "", false
	}
	if d.Kind == KindString {
		return d.Str, d.Str != ""
	}
	return First(d)
}

// Friendly extracts the message to show for err.
//
// Order: a bare string body, a string detail, the first message inside
// detail, the first message anywhere in the body, then err's own text. An
// empty string detail gives RequestFailed.
// The server's generic serializer failure is replaced by the "name"
// field's message when there is one, otherwise by ConstraintsHint.
func Friendly(err error) string {
	if err == nil {
		return ""
	}

	var body Payload
	var c Carrier
	if errors.As(err, &c) {
		body = c.ErrorPayload()
	}

	msg := extract(body)
	if msg == "" {
		if d, ok := body.Field("detail"); ok && d.Kind == KindString {
			return RequestFailed
		}
		msg = err.Error()
	}

	if serializerErr.MatchString(msg) {
		msg = ConstraintsHint
		if specific, ok := nameMessage(body); ok {
			msg = specific
		}
	}

	if msg == "" {
		return RequestFailed
	}
	return msg
}

func extract(body Payload) string {
	if body.Kind == KindString {
		return body.Str
	}
	if d, ok := body.Field("detail"); ok && d.Kind == KindString {
		return d.Str
	}
	if d, ok := body.Field("detail"); ok {
		if msg, ok := First(d); ok {
			return msg
		}
	}
	if msg, ok := First(body); ok {
		return msg
	}
	return ""
}

func nameMessage(body Payload) (string, bool) {
	if d, ok := body.Field("detail"); ok {
		if n, ok := d.Field("name"); ok && !n.IsNull() {
			if msg, ok := firstOfValue(n, 0); ok {
				return msg, true
			}
		}
	}
	if n, ok := body.Field("name"); ok {
		if s, ok := n.scalar(); ok {
			return s, true
		}
		return firstOfValue(n, 0)
	}
	return "", false
}
