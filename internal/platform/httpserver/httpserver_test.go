package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, DefaultWriteTimeout, New(":0", http.NotFoundHandler()).WriteTimeout)
	assert.Equal(t, DefaultWriteTimeout, New(":0", http.NotFoundHandler(), WithWriteTimeout(time.Second)).WriteTimeout)
	assert.Equal(t, 76*time.Second, New(":0", http.NotFoundHandler(), WithWriteTimeout(76*time.Second)).WriteTimeout)
}
