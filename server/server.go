// Package server serves a single page, to a single client, over a single
// websocket: a live grid of per-node compartment counts fed by the
// solver's sampled trajectory frames. It is a development harness view,
// not part of the solver core, and intentionally does almost no
// generalization beyond what one watcher needs.
package server

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"

	"stochnet/solver"
)

var upgrader = websocket.Upgrader{}

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Ping cadence for client liveness.
	pingResolution = 500 * time.Millisecond
	// Throttle for frame publication.
	pubResolution = 100 * time.Millisecond
	// Time to wait before force close on connection.
	closeGracePeriod = 10 * time.Second
)

// Server publishes trajectory frames to a viewing client.
type Server struct {
	addr      string
	nn, nc    int
	names     []string
	lastFrame solver.Frame
	frames    <-chan solver.Frame
	ctx       context.Context
}

// NewServer wires the frame stream into a view of nn nodes with nc named
// compartments. The initial frame seeds the page render.
func NewServer(
	ctx context.Context,
	addr string,
	nn, nc int,
	names []string,
	initial solver.Frame,
	frames <-chan solver.Frame,
) (*Server, error) {
	if len(names) != nc {
		return nil, fmt.Errorf("%d compartment names for %d compartments", len(names), nc)
	}
	return &Server{
		addr:      addr,
		nn:        nn,
		nc:        nc,
		names:     names,
		lastFrame: initial,
		frames:    frames,
		ctx:       ctx,
	}, nil
}

func (server *Server) Serve() (err error) {
	http.HandleFunc("/", server.serveIndex)
	http.HandleFunc("/ws", server.serveWebsocket)

	if err = http.ListenAndServe(server.addr, nil); err != nil {
		err = fmt.Errorf("serve: %w", err)
	}
	return
}

// serveWebsocket pushes sampled frames to the client as they arrive.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		log.Println("upgrade:", err)
		return
	}

	defer server.closeWebsocket(ws)
	server.publishFrames(r.Context(), ws)
}

func (server *Server) publishFrames(
	ctx context.Context,
	ws *websocket.Conn,
) {
	last := time.Now()
	pubCtx, cancelPub := context.WithCancel(ctx)
	defer cancelPub()
	pinger := channerics.NewTicker(pubCtx.Done(), pingResolution)
	lastPong := time.Now()

	pong := make(chan struct{})
	defer close(pong)
	ws.SetPongHandler(func(appData string) error {
		pong <- struct{}{}
		return nil
	})

	// A read method must be pumped so ping/pong control handlers run; all
	// read errors are permanent, hence publication is cancelled on any.
	go func() {
		for {
			select {
			case <-pubCtx.Done():
				return
			default:
				if _, _, err := ws.ReadMessage(); err != nil {
					cancelPub()
					if isClosure(err) {
						return
					}
					fmt.Println("read pump: ", err)
				}
			}
		}
	}()

	for {
		select {
		case <-pubCtx.Done():
			return
		case <-server.ctx.Done():
			return
		case <-pinger:
			if time.Since(lastPong) > pingResolution*2 {
				fmt.Println("client stopped ponging, closing conn")
				return
			}
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					fmt.Printf("ping failed: %T %v", err, err)
				}
				return
			}
		case <-pong:
			lastPong = time.Now()
		case frame, ok := <-server.frames:
			if !ok {
				return
			}
			server.lastFrame = frame
			// Drop frames when they arrive faster than a watcher can see.
			if time.Since(last) < pubResolution {
				break
			}
			last = time.Now()

			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				fmt.Printf("failed to set deadline: %T %v", err, err)
				return
			}
			if err := ws.WriteJSON(frame); err != nil {
				if isError(err) {
					fmt.Printf("publish failed: %T %v", err, err)
				}
				return
			}
		}
	}
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func (server *Server) closeWebsocket(ws *websocket.Conn) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	ws.Close()
}

// Cell is one node's view row, bound into the index template.
type Cell struct {
	Node   int
	Counts []int
}

func (server *Server) cells() []Cell {
	cells := make([]Cell, server.nn)
	for n := 0; n < server.nn; n++ {
		counts := make([]int, server.nc)
		if len(server.lastFrame.U) == server.nn*server.nc {
			copy(counts, server.lastFrame.U[n*server.nc:(n+1)*server.nc])
		}
		cells[n] = Cell{Node: n, Counts: counts}
	}
	return cells
}

// Serve the index.html main page: a table of nodes by compartments whose
// cells are rewritten by the websocket frames.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	t, err := template.New("trajectory").Parse(indexTemplate)
	if err != nil {
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	data := struct {
		Names []string
		Cells []Cell
	}{Names: server.names, Cells: server.cells()}
	if err = t.Execute(w, data); err != nil {
		_, _ = w.Write([]byte(err.Error()))
	}
}

const indexTemplate = `
<html>
	<body>
		<div id="day">day 0</div>
		<table border="1">
			<tr><th>node</th>{{ range $name := .Names }}<th>{{ $name }}</th>{{ end }}</tr>
			{{ range $cell := .Cells }}
			<tr id="node-{{ $cell.Node }}"><td>{{ $cell.Node }}</td>
				{{ range $i, $count := $cell.Counts }}<td id="cell-{{ $cell.Node }}-{{ $i }}">{{ $count }}</td>{{ end }}
			</tr>
			{{ end }}
		</table>
		<script>
			const nc = {{ len .Names }};
			const ws = new WebSocket("ws://" + location.host + "/ws");
			ws.onmessage = (msg) => {
				const frame = JSON.parse(msg.data);
				document.getElementById("day").textContent = "day " + frame.Time;
				frame.U.forEach((count, i) => {
					const cell = document.getElementById("cell-" + Math.floor(i / nc) + "-" + (i % nc));
					if (cell) cell.textContent = count;
				});
			};
		</script>
	</body>
</html>
`
