// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircore

import (
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// RunHandlers dispatches event to every matching internal then external
// handler: exact-command handlers, then any numeric-range handlers whose
// bounds contain a numeric command, then ALL_EVENTS handlers.
func (c *Client) RunHandlers(event *Event) {
	if event == nil {
		c.debug.Print("nil event")
		return
	}

	c.debug.Print("< " + StripRaw(event.String()))
	if c.Config.Out != nil {
		if pretty, ok := event.Pretty(); ok {
			fmt.Fprintln(c.Config.Out, StripRaw(pretty))
		}
	}

	c.Handlers.exec(event.Command, true, c, event)
	c.Handlers.exec(event.Command, false, c, event)
	c.Handlers.execRanges(event.Command, c, event)
	c.Handlers.exec(ALL_EVENTS, true, c, event)
	c.Handlers.exec(ALL_EVENTS, false, c, event)
}

// Handler is the low-level interface a registered callback implements.
type Handler interface {
	Execute(*Client, *Event)
}

// HandlerFunc implements Handler.
type HandlerFunc func(client *Client, event *Event)

// Execute calls f.
func (f HandlerFunc) Execute(client *Client, event *Event) { f(client, event) }

type nestedHandlers struct {
	cm cmap.ConcurrentMap
}

type handlerTuple struct {
	cuid    string
	handler Handler
}

func newNestedHandlers() *nestedHandlers {
	return &nestedHandlers{cm: cmap.New()}
}

func (nest *nestedHandlers) len() (total int) {
	for hs := range nest.cm.IterBuffered() {
		hndlrs := hs.Val.(cmap.ConcurrentMap)
		total += len(hndlrs.Keys())
	}
	return
}

func (nest *nestedHandlers) lenFor(cmd string) (total int) {
	cmd = strings.ToUpper(cmd)
	hs, ok := nest.cm.Get(cmd)
	if !ok {
		return 0
	}
	return len(hs.(cmap.ConcurrentMap).Keys())
}

func (nest *nestedHandlers) getAllHandlersFor(s string) (handlers []handlerTuple, ok bool) {
	h, ok := nest.cm.Get(strings.ToUpper(s))
	if !ok {
		return nil, false
	}
	hm := h.(cmap.ConcurrentMap)
	for hi := range hm.IterBuffered() {
		handlers = append(handlers, handlerTuple{hi.Key, hi.Val.(Handler)})
	}
	return handlers, true
}

// rangeHandler is a handler registered against a numeric range (e.g.
// "400-599") rather than a single command: a numeric event matches when
// start <= code <= end.
type rangeHandler struct {
	cuid     string
	start    int
	end      int
	internal bool
	handler  Handler
}

// Caller manages internal and external (user facing) handlers.
type Caller struct {
	mu sync.RWMutex

	parent *Client

	external *nestedHandlers
	internal *nestedHandlers

	ranges []rangeHandler

	debug *log.Logger
}

func newCaller(parent *Client, debugOut *log.Logger) *Caller {
	return &Caller{
		external: newNestedHandlers(),
		internal: newNestedHandlers(),
		debug:    debugOut,
		parent:   parent,
	}
}

// Len returns the total number of user-registered handlers.
func (c *Caller) Len() int { return c.external.len() }

// Count returns the number of registered handlers for a given command.
func (c *Caller) Count(cmd string) int { return c.external.lenFor(cmd) }

func (c *Caller) String() string {
	return fmt.Sprintf("<Caller external:%d internal:%d ranges:%d>", c.Len(), c.internal.len(), len(c.ranges))
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func (c *Caller) cuid(cmd string, n int) (cuid, uid string) {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Int63()%int64(len(letterBytes))]
	}
	return cmd + ":" + string(b), string(b)
}

func (c *Caller) cuidToID(input string) (cmd, uid string) {
	i := strings.IndexByte(input, ':')
	if i < 0 {
		return "", ""
	}
	return input[:i], input[i+1:]
}

// exec runs the handlers registered for the exact command. The bg pass
// only runs handlers registered as background (":bg" suffixed), each in
// its own goroutine; the foreground pass runs the rest synchronously.
func (c *Caller) exec(command string, bg bool, client *Client, event *Event) {
	handle := func(wgr *sync.WaitGroup, h handlerTuple) {
		if bg {
			go func() {
				defer wgr.Done()
				if client.Config.RecoverFunc != nil {
					defer recoverHandlerPanic(client, event, h.cuid, 3)
				}
				h.handler.Execute(client, event.Copy())
			}()
			return
		}

		defer wgr.Done()
		if client.Config.RecoverFunc != nil {
			defer recoverHandlerPanic(client, event, h.cuid, 3)
		}
		h.handler.Execute(client, event.Copy())
	}

	var wg sync.WaitGroup

	if internals, ok := c.internal.getAllHandlersFor(command); ok {
		for _, h := range internals {
			if strings.HasSuffix(h.cuid, ":bg") != bg {
				continue
			}
			wg.Add(1)
			handle(&wg, h)
		}
	}
	if externals, ok := c.external.getAllHandlersFor(command); ok {
		for _, h := range externals {
			if strings.HasSuffix(h.cuid, ":bg") != bg {
				continue
			}
			wg.Add(1)
			handle(&wg, h)
		}
	}

	if !bg {
		wg.Wait()
	}
}

// execRanges runs every registered numeric-range handler whose [start,end]
// window contains command's numeric value. Non-numeric commands never
// match a range.
func (c *Caller) execRanges(command string, client *Client, event *Event) {
	code, err := strconv.Atoi(command)
	if err != nil {
		return
	}

	c.mu.RLock()
	var matches []rangeHandler
	for _, r := range c.ranges {
		if code >= r.start && code <= r.end {
			matches = append(matches, r)
		}
	}
	c.mu.RUnlock()

	for _, r := range matches {
		if client.Config.RecoverFunc != nil {
			func() {
				defer recoverHandlerPanic(client, event, r.cuid, 3)
				r.handler.Execute(client, event.Copy())
			}()
			continue
		}
		r.handler.Execute(client, event.Copy())
	}
}

// ClearAll clears all external command handlers. Range handlers added with
// AddRange are kept.
func (c *Caller) ClearAll() {
	c.external.cm = cmap.New()
}

func (c *Caller) clearInternal() {
	c.internal.cm = cmap.New()

	c.mu.Lock()
	kept := c.ranges[:0]
	for _, r := range c.ranges {
		if !r.internal {
			kept = append(kept, r)
		}
	}
	c.ranges = kept
	c.mu.Unlock()
}

// Clear clears all external handlers for the given command.
func (c *Caller) Clear(cmd string) {
	cmd = strings.ToUpper(cmd)
	c.external.cm.Remove(cmd)
}

// Remove removes the handler with cuid from the handler stack. Range
// handlers added with AddRange are not looked up and are not removed.
func (c *Caller) Remove(cuid string) (success bool) {
	c.mu.Lock()
	success = c.remove(cuid)
	c.mu.Unlock()
	return success
}

func (c *Caller) remove(cuid string) (ok bool) {
	cmd, uid := c.cuidToID(cuid)
	if len(cmd) == 0 || len(uid) == 0 {
		return false
	}

	h, ok := c.external.cm.Get(cmd)
	if !ok {
		return false
	}
	hs := h.(cmap.ConcurrentMap)
	if _, ok = hs.Get(uid); !ok {
		return false
	}
	hs.Remove(uid)
	return true
}

func (c *Caller) sregister(internal, bg bool, cmd string, handler Handler) (cuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.register(internal, bg, cmd, handler)
}

func (c *Caller) register(internal, bg bool, cmd string, handler Handler) (cuid string) {
	cmd = strings.ToUpper(cmd)

	cuid, uid := c.cuid(cmd, 20)
	if bg {
		uid += ":bg"
		cuid += ":bg"
	}

	var parent *nestedHandlers
	if internal {
		parent = c.internal
	} else {
		parent = c.external
	}

	var chandlers cmap.ConcurrentMap
	if ei, ok := parent.cm.Get(cmd); ok {
		chandlers = ei.(cmap.ConcurrentMap)
	} else {
		chandlers = cmap.New()
	}
	parent.cm.SetIfAbsent(cmd, chandlers)
	chandlers.Set(uid, handler)

	return cuid
}

// registerRange registers a numeric-range handler, matched on [start,end].
func (c *Caller) registerRange(start, end int, handler Handler) (cuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cuid, _ = c.cuid(fmt.Sprintf("%d-%d", start, end), 20)
	c.ranges = append(c.ranges, rangeHandler{cuid: cuid, start: start, end: end, handler: handler})
	return cuid
}

// registerRangeLocked is registerRange for internal (builtin) handlers,
// called with Caller.mu already held by registerBuiltins.
func (c *Caller) registerRangeLocked(start, end int, handler Handler) (cuid string) {
	cuid, _ = c.cuid(fmt.Sprintf("%d-%d", start, end), 20)
	c.ranges = append(c.ranges, rangeHandler{cuid: cuid, start: start, end: end, internal: true, handler: handler})
	return cuid
}

// AddHandler registers a handler for the given event.
func (c *Caller) AddHandler(cmd string, handler Handler) (cuid string) {
	return c.sregister(false, false, cmd, handler)
}

// Add registers a handler function for the given event.
func (c *Caller) Add(cmd string, handler func(client *Client, event *Event)) (cuid string) {
	return c.sregister(false, false, cmd, HandlerFunc(handler))
}

// AddBg registers a handler function that executes in its own goroutine.
func (c *Caller) AddBg(cmd string, handler func(client *Client, event *Event)) (cuid string) {
	return c.sregister(false, true, cmd, HandlerFunc(handler))
}

// AddRange registers a handler matched against any numeric command whose
// value falls within [start, end], inclusive. Used for coarse dispatch
// like "log every 4xx/5xx numeric" without registering one handler per
// code.
func (c *Caller) AddRange(start, end int, handler func(client *Client, event *Event)) (cuid string) {
	return c.registerRange(start, end, HandlerFunc(handler))
}

// AddTmp adds a handler good for one-time or few-time use, optionally
// expiring after deadline. The handler returns true to request its own
// removal.
func (c *Caller) AddTmp(cmd string, deadline time.Duration, handler func(client *Client, event *Event) bool) (cuid string, done chan struct{}) {
	done = make(chan struct{})

	cuid = c.sregister(false, true, cmd, HandlerFunc(func(client *Client, event *Event) {
		if handler(client, event) {
			if ok := c.Remove(cuid); ok {
				close(done)
			}
		}
	}))

	if deadline > 0 {
		go func() {
			select {
			case <-time.After(deadline):
			case <-done:
			}
			if ok := c.Remove(cuid); ok {
				close(done)
			}
		}()
	}

	return cuid, done
}

func recoverHandlerPanic(client *Client, event *Event, id string, skip int) {
	perr := recover()
	if perr == nil {
		return
	}

	var file, function string
	var line int

	var pcs [10]uintptr
	frames := runtime.CallersFrames(pcs[:runtime.Callers(skip, pcs[:])])
	if frame, _ := frames.Next(); true {
		file = frame.File
		line = frame.Line
		function = frame.Function
	}

	err := &HandlerError{
		Event: event,
		ID:    id,
		File:  file,
		Line:  line,
		Func:  function,
		Panic: perr,
		Stack: debug.Stack(),
	}

	client.Config.RecoverFunc(client, err)
}

// HandlerError is the error delivered to Config.RecoverFunc when a handler
// panics and is recovered.
type HandlerError struct {
	Event *Event
	ID    string
	File  string
	Line  int
	Func  string
	Panic interface{}
	Stack []byte
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("panic during handler [%s] execution in %s:%d: %v", e.ID, e.File, e.Line, e.Panic)
}

func (e *HandlerError) String() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Panic, string(e.Stack))
}

// DefaultRecoverHandler logs the panic and call trace to the client's debug
// logger, or stdout if no Config.Debug writer is set.
func DefaultRecoverHandler(client *Client, err *HandlerError) {
	if client.Config.Debug == nil {
		fmt.Println(err.Error())
		fmt.Println(err.String())
		return
	}

	client.debug.Println(err.Error())
	client.debug.Println(err.String())
}
