// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package iceoryx2

import (
	"context"
	"errors"
	"sync"
	"time"
	"unsafe"

	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// The request-response pattern shares the service registry, node
// tracking and static-config matching with publish-subscribe; only the
// transport differs. The exchange below is the per-service rendezvous
// between clients and servers.

type rrExchange struct {
	mu      sync.Mutex
	servers map[uniqueid.PortId]*serverState
	clients map[uniqueid.PortId]*clientState
}

type serverState struct {
	queue []*ActiveRequest
}

type clientState struct {
	active int
}

var (
	rrMu        sync.Mutex
	rrExchanges = map[*serviceRuntime]*rrExchange{}
)

func exchangeFor(rt *serviceRuntime) *rrExchange {
	rrMu.Lock()
	defer rrMu.Unlock()
	ex, ok := rrExchanges[rt]
	if !ok {
		ex = &rrExchange{
			servers: map[uniqueid.PortId]*serverState{},
			clients: map[uniqueid.PortId]*clientState{},
		}
		rrExchanges[rt] = ex
	}
	return ex
}

// PortFactoryRequestResponse is the factory for creating clients and servers
// in a request-response service.
type PortFactoryRequestResponse struct {
	rt          *serviceRuntime
	node        *Node
	serviceType ServiceType
	exchange    *rrExchange
	closed      bool
}

// Client returns a ClientBuilder for creating a client.
func (p *PortFactoryRequestResponse) Client() *ClientBuilder {
	if p == nil || p.closed {
		return nil
	}
	return &ClientBuilder{factory: p, serviceType: p.serviceType}
}

// Server returns a ServerBuilder for creating a server.
func (p *PortFactoryRequestResponse) Server() *ServerBuilder {
	if p == nil || p.closed {
		return nil
	}
	return &ServerBuilder{factory: p, serviceType: p.serviceType}
}

// ServiceName returns the name of the service.
func (p *PortFactoryRequestResponse) ServiceName() string {
	if p == nil || p.closed {
		return ""
	}
	return p.rt.static.Name
}

// ServiceID returns the unique identifier of the service.
func (p *PortFactoryRequestResponse) ServiceID() string {
	if p == nil || p.closed {
		return ""
	}
	return p.rt.static.UUID
}

// Close releases the port factory resources. The exchange is dropped
// together with the last factory referencing the service.
func (p *PortFactoryRequestResponse) Close() error {
	if p.rt != nil && !p.closed {
		p.closed = true
		p.rt.mu.Lock()
		last := p.rt.refs == 1
		p.rt.mu.Unlock()
		if last {
			rrMu.Lock()
			delete(rrExchanges, p.rt)
			rrMu.Unlock()
		}
		p.rt.release(p.node)
	}
	return nil
}

func (p *PortFactoryRequestResponse) requestElementSize() uint64 {
	if p.rt.static.RequestPayload == nil {
		return 1
	}
	return p.rt.static.RequestPayload.Size
}

func (p *PortFactoryRequestResponse) responseElementSize() uint64 {
	if p.rt.static.ResponsePayload == nil {
		return 1
	}
	return p.rt.static.ResponsePayload.Size
}

// ClientBuilder is used to configure and create a Client.
type ClientBuilder struct {
	factory     *PortFactoryRequestResponse
	serviceType ServiceType
	maxSlice    uint64
	consumed    bool
}

// InitialMaxSliceLen records an initial maximum slice length. The value is
// not passed on to the Client and does not limit its loans.
func (b *ClientBuilder) InitialMaxSliceLen(len uint64) *ClientBuilder {
	if b != nil {
		b.maxSlice = len
	}
	return b
}

// AllocationStrategy is accepted for API compatibility and has no effect
// on the client.
func (b *ClientBuilder) AllocationStrategy(strategy AllocationStrategy) *ClientBuilder {
	return b
}

// Create creates a new Client.
func (b *ClientBuilder) Create() (*Client, error) {
	if b == nil || b.factory == nil {
		return nil, ErrNilHandle
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	ex := b.factory.exchange
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if uint64(len(ex.clients)) >= b.factory.rt.static.MaxClients {
		return nil, ClientCreateErrorExceedsMaxSupportedClients
	}
	id := uniqueid.NewPortId(b.factory.node.n.ID)
	ex.clients[id] = &clientState{}

	return &Client{
		factory:     b.factory,
		id:          id,
		serviceType: b.serviceType,
	}, nil
}

// Client is a port that sends requests and receives responses.
type Client struct {
	factory     *PortFactoryRequestResponse
	id          uniqueid.PortId
	serviceType ServiceType
	mu          sync.Mutex
	closed      bool
}

// SendCopy sends a copy of the provided data as a request and returns a PendingResponse
// to receive the corresponding responses.
func (c *Client) SendCopy(data unsafe.Pointer, sizeOfElement, numberOfElements uint64) (*PendingResponse, error) {
	req, err := c.LoanSliceUninit(numberOfElements)
	if err != nil {
		return nil, err
	}
	if data != nil {
		n := sizeOfElement * numberOfElements
		if n > uint64(len(req.buf)) {
			n = uint64(len(req.buf))
		}
		copy(req.buf, unsafe.Slice((*byte)(data), n))
	}
	return req.Send()
}

// SendCopyAs is a generic helper to send a copy of typed data.
func SendCopyAs[T any](c *Client, data *T) (*PendingResponse, error) {
	var zero T
	size := unsafe.Sizeof(zero)
	return c.SendCopy(unsafe.Pointer(data), uint64(size), 1)
}

// LoanSliceUninit loans memory for a zero-copy request.
func (c *Client) LoanSliceUninit(numberOfElements uint64) (*RequestMut, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if numberOfElements == 0 {
		numberOfElements = 1
	}
	return &RequestMut{
		client: c,
		buf:    make([]byte, c.factory.requestElementSize()*numberOfElements),
	}, nil
}

// Close releases the client resources.
// Implements io.Closer.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		ex := c.factory.exchange
		ex.mu.Lock()
		delete(ex.clients, c.id)
		ex.mu.Unlock()
	}
	return nil
}

// ServerBuilder is used to configure and create a Server.
type ServerBuilder struct {
	factory     *PortFactoryRequestResponse
	serviceType ServiceType
	maxSlice    uint64
	consumed    bool
}

// InitialMaxSliceLen records an initial maximum slice length, which
// Server.InitialMaxSliceLen reports. It does not limit any loan.
func (b *ServerBuilder) InitialMaxSliceLen(len uint64) *ServerBuilder {
	if b != nil {
		b.maxSlice = len
	}
	return b
}

// AllocationStrategy is accepted for API compatibility and has no effect
// on the server.
func (b *ServerBuilder) AllocationStrategy(strategy AllocationStrategy) *ServerBuilder {
	return b
}

// Create creates a new Server.
func (b *ServerBuilder) Create() (*Server, error) {
	if b == nil || b.factory == nil {
		return nil, ErrNilHandle
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	ex := b.factory.exchange
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if uint64(len(ex.servers)) >= b.factory.rt.static.MaxServers {
		return nil, ServerCreateErrorExceedsMaxSupportedServers
	}
	id := uniqueid.NewPortId(b.factory.node.n.ID)
	ex.servers[id] = &serverState{}

	return &Server{
		factory:     b.factory,
		id:          id,
		maxSlice:    b.maxSlice,
		serviceType: b.serviceType,
	}, nil
}

// Server is a port that receives requests and sends responses. Safe for
// concurrent use; Close waits for in-flight receive calls to complete.
type Server struct {
	factory     *PortFactoryRequestResponse
	id          uniqueid.PortId
	maxSlice    uint64
	serviceType ServiceType
	mu          sync.RWMutex
	closed      bool
}

// HasRequests returns true if there are pending requests to be received.
func (s *Server) HasRequests() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrServerClosed
	}
	ex := s.factory.exchange
	ex.mu.Lock()
	defer ex.mu.Unlock()
	state := ex.servers[s.id]
	return state != nil && len(state.queue) > 0, nil
}

// Receive receives the next request from the server queue.
// Returns ErrNoData if no request is available.
func (s *Server) Receive() (*ActiveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrServerClosed
	}
	ex := s.factory.exchange
	ex.mu.Lock()
	defer ex.mu.Unlock()
	state := ex.servers[s.id]
	if state == nil || len(state.queue) == 0 {
		return nil, ErrNoData
	}
	req := state.queue[0]
	state.queue = state.queue[1:]
	return req, nil
}

// ReceiveWithContext waits for a request with context cancellation support.
// The pollInterval parameter controls how often the context is checked (default 10ms if 0).
func (s *Server) ReceiveWithContext(ctx context.Context, pollInterval time.Duration) (*ActiveRequest, error) {
	if pollInterval == 0 {
		pollInterval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		request, err := s.Receive()
		if errors.Is(err, ErrNoData) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		return request, nil
	}
}

// ReceiveChannel returns a channel that yields requests as they arrive.
// The channel is closed when the context is cancelled or an error occurs.
func (s *Server) ReceiveChannel(ctx context.Context) <-chan *ActiveRequest {
	ch := make(chan *ActiveRequest)
	go func() {
		defer close(ch)
		for {
			request, err := s.ReceiveWithContext(ctx, 10*time.Millisecond)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case ch <- request:
			}
		}
	}()
	return ch
}

// InitialMaxSliceLen returns the initial max slice length.
func (s *Server) InitialMaxSliceLen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.maxSlice
}

// Close releases the server resources.
// Implements io.Closer.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		ex := s.factory.exchange
		ex.mu.Lock()
		delete(ex.servers, s.id)
		ex.mu.Unlock()
	}
	return nil
}

// RequestMut represents a loaned request that can be written to and sent.
type RequestMut struct {
	client *Client
	buf    []byte
	sent   bool
}

// Payload returns a pointer to the request payload data.
func (r *RequestMut) Payload() unsafe.Pointer {
	if r == nil || r.sent || len(r.buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.buf[0])
}

// RequestMutPayloadAs returns the payload cast to the given type.
func RequestMutPayloadAs[T any](r *RequestMut) *T {
	return (*T)(r.Payload())
}

// Send delivers the request to every connected server and returns a
// PendingResponse to receive responses through.
func (r *RequestMut) Send() (*PendingResponse, error) {
	if r == nil || r.sent {
		return nil, ErrNilHandle
	}
	r.sent = true

	c := r.client
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.mu.Unlock()

	ex := c.factory.exchange
	ex.mu.Lock()
	defer ex.mu.Unlock()

	state := ex.clients[c.id]
	if state == nil {
		return nil, ErrClientClosed
	}
	limit := c.factory.rt.static.MaxActiveRequestsPerClient
	if limit > 0 && uint64(state.active) >= limit {
		return nil, RequestSendErrorExceedsMaxActiveReqs
	}
	state.active++

	pending := &PendingResponse{
		client:        c,
		maxBufferSize: c.factory.rt.static.MaxResponseBufferSize,
	}
	for _, srv := range ex.servers {
		srv.queue = append(srv.queue, &ActiveRequest{
			factory: c.factory,
			payload: r.buf,
			pending: pending,
		})
	}
	return pending, nil
}

// Close releases the request without sending.
// Implements io.Closer.
func (r *RequestMut) Close() error {
	if r != nil {
		r.sent = true
	}
	return nil
}

// ActiveRequest represents a received request that can be responded to.
type ActiveRequest struct {
	factory *PortFactoryRequestResponse
	payload []byte
	pending *PendingResponse
	closed  bool
}

// Payload returns a pointer to the request payload data.
func (r *ActiveRequest) Payload() unsafe.Pointer {
	if r == nil || r.closed || len(r.payload) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.payload[0])
}

// ActiveRequestPayloadAs returns the payload cast to the given type.
func ActiveRequestPayloadAs[T any](r *ActiveRequest) *T {
	return (*T)(r.Payload())
}

// SendCopy sends a copy of the provided data as a response.
func (r *ActiveRequest) SendCopy(data unsafe.Pointer, sizeOfElement, numberOfElements uint64) error {
	resp, err := r.LoanSliceUninit(numberOfElements)
	if err != nil {
		return err
	}
	if data != nil {
		n := sizeOfElement * numberOfElements
		if n > uint64(len(resp.buf)) {
			n = uint64(len(resp.buf))
		}
		copy(resp.buf, unsafe.Slice((*byte)(data), n))
	}
	return resp.Send()
}

// ActiveRequestSendCopyAs is a generic helper to send a copy of typed data as a response.
func ActiveRequestSendCopyAs[T any](r *ActiveRequest, data *T) error {
	var zero T
	size := unsafe.Sizeof(zero)
	return r.SendCopy(unsafe.Pointer(data), uint64(size), 1)
}

// LoanSliceUninit loans memory for a zero-copy response.
func (r *ActiveRequest) LoanSliceUninit(numberOfElements uint64) (*ResponseMut, error) {
	if r == nil || r.closed {
		return nil, ErrNilHandle
	}
	if numberOfElements == 0 {
		numberOfElements = 1
	}
	return &ResponseMut{
		request: r,
		buf:     make([]byte, r.factory.responseElementSize()*numberOfElements),
	}, nil
}

// Close releases the active request resources.
// Implements io.Closer.
func (r *ActiveRequest) Close() error {
	if r != nil {
		r.closed = true
	}
	return nil
}

// ResponseMut represents a loaned response that can be written to and sent.
type ResponseMut struct {
	request *ActiveRequest
	buf     []byte
	sent    bool
}

// Payload returns a pointer to the response payload data.
func (r *ResponseMut) Payload() unsafe.Pointer {
	if r == nil || r.sent || len(r.buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.buf[0])
}

// ResponseMutPayloadAs returns the payload cast to the given type.
func ResponseMutPayloadAs[T any](r *ResponseMut) *T {
	return (*T)(r.Payload())
}

// Send delivers the response to the request's pending queue.
func (r *ResponseMut) Send() error {
	if r == nil || r.sent {
		return ErrNilHandle
	}
	r.sent = true
	return r.request.pending.deliver(r.buf)
}

// Close releases the response without sending.
// Implements io.Closer.
func (r *ResponseMut) Close() error {
	if r != nil {
		r.sent = true
	}
	return nil
}

// PendingResponse represents a sent request that is awaiting responses.
// Safe for concurrent use.
type PendingResponse struct {
	client        *Client
	maxBufferSize uint64

	mu        sync.Mutex
	responses [][]byte
	closed    bool
}

func (p *PendingResponse) deliver(buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ResponseSendError(0)
	}
	p.responses = append(p.responses, buf)
	if p.maxBufferSize > 0 && uint64(len(p.responses)) > p.maxBufferSize {
		p.responses = p.responses[1:]
	}
	return nil
}

// Receive receives the next response for this request.
// Returns ErrNoData if no response is available yet.
func (p *PendingResponse) Receive() (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrNilHandle
	}
	if len(p.responses) == 0 {
		return nil, ErrNoData
	}
	buf := p.responses[0]
	p.responses = p.responses[1:]
	return &Response{payload: buf}, nil
}

// ReceiveWithContext waits for a response with context cancellation support.
// The pollInterval parameter controls how often the context is checked (default 10ms if 0).
func (p *PendingResponse) ReceiveWithContext(ctx context.Context, pollInterval time.Duration) (*Response, error) {
	if pollInterval == 0 {
		pollInterval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		response, err := p.Receive()
		if errors.Is(err, ErrNoData) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		return response, nil
	}
}

// ReceiveChannel returns a channel that yields responses as they arrive.
// The channel is closed when the context is cancelled or an error occurs.
func (p *PendingResponse) ReceiveChannel(ctx context.Context) <-chan *Response {
	ch := make(chan *Response)
	go func() {
		defer close(ch)
		for {
			response, err := p.ReceiveWithContext(ctx, 10*time.Millisecond)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				response.Close()
				return
			case ch <- response:
			}
		}
	}()
	return ch
}

// Close releases the pending response resources and retires the active
// request slot it occupies at its client.
// Implements io.Closer.
func (p *PendingResponse) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	ex := p.client.factory.exchange
	ex.mu.Lock()
	if state := ex.clients[p.client.id]; state != nil && state.active > 0 {
		state.active--
	}
	ex.mu.Unlock()
	return nil
}

// Response represents a received response.
type Response struct {
	payload []byte
	closed  bool
}

// Payload returns a pointer to the response payload data.
func (r *Response) Payload() unsafe.Pointer {
	if r == nil || r.closed || len(r.payload) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.payload[0])
}

// ResponsePayloadAs returns the payload cast to the given type.
func ResponsePayloadAs[T any](r *Response) *T {
	return (*T)(r.Payload())
}

// Close releases the response resources.
// Implements io.Closer.
func (r *Response) Close() error {
	if r != nil {
		r.closed = true
	}
	return nil
}
