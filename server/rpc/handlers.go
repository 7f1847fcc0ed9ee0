package rpc

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/rpc/jsonrpc"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1 << 12,
	WriteBufferSize: 1 << 12,
}

// rpcRequest turns a single request body into a codec stream,
// responses are collected in a buffer.
type rpcRequest struct {
	r    io.Reader
	rw   *bytes.Buffer
	done chan bool
}

func newRequest(r io.Reader) *rpcRequest {
	return &rpcRequest{
		r:    r,
		rw:   new(bytes.Buffer),
		done: make(chan bool, 1),
	}
}

func (r *rpcRequest) Read(p []byte) (int, error)  { return r.r.Read(p) }
func (r *rpcRequest) Write(p []byte) (int, error) { return r.rw.Write(p) }
func (r *rpcRequest) Close() error {
	r.done <- true
	return nil
}

// Call serves every call of the request and returns the responses once the
// codec has been closed.
func (r *rpcRequest) Call() io.Reader {
	go jsonrpc.ServeConn(r)
	<-r.done
	return r.rw
}

// WebSocket serves JSON-RPC over a websocket connection, one call per message.
func WebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer c.Close()

	for {
		mtype, reader, err := c.NextReader()
		if err != nil {
			break
		}

		res := newRequest(reader).Call()

		writer, err := c.NextWriter(mtype)
		if err != nil {
			break
		}

		io.Copy(writer, res)
		writer.Close()
	}
}

func Post(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	res := newRequest(r.Body).Call()

	w.Header().Set("Content-Type", "application/json")
	io.Copy(w, res)
}
