package httpx

import (
	"bytes"
	"net/http"

	"github.com/go-chi/render"
)

// ResponseBuffer captures the response of a handler that answers on its
// own, like the bearer server's token endpoint or the oauth authorization
// middleware, so that the caller decides what reaches the client.
type ResponseBuffer struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func NewResponseBuffer() *ResponseBuffer {
	return &ResponseBuffer{header: http.Header{}}
}

func (b *ResponseBuffer) Header() http.Header {
	return b.header
}

func (b *ResponseBuffer) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// WriteHeader keeps the first status written.
func (b *ResponseBuffer) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

// Status is 0 until the handler writes a status or a body.
func (b *ResponseBuffer) Status() int {
	return b.status
}

// OK reports whether the handler answered with a 2xx status.
func (b *ResponseBuffer) OK() bool {
	return b.status >= 200 && b.status < 300
}

// DecodeJSON reads the captured body into v.
func (b *ResponseBuffer) DecodeJSON(v any) error {
	return render.DecodeJSON(bytes.NewReader(b.body.Bytes()), v)
}
