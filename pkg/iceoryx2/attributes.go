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

import "sort"

// Attribute represents a key-value pair for service metadata.
type Attribute struct {
	Key   string
	Value string
}

// AttributeSet is an immutable collection of attributes associated with
// a service, persisted in its static config and therefore identical for
// every opener.
type AttributeSet struct {
	attrs []Attribute
}

func newAttributeSet(attrs map[string]string) *AttributeSet {
	out := &AttributeSet{attrs: make([]Attribute, 0, len(attrs))}
	for k, v := range attrs {
		out.attrs = append(out.attrs, Attribute{Key: k, Value: v})
	}
	sort.Slice(out.attrs, func(i, j int) bool { return out.attrs[i].Key < out.attrs[j].Key })
	return out
}

// Len returns the number of attributes in the set.
func (a *AttributeSet) Len() uint64 {
	if a == nil {
		return 0
	}
	return uint64(len(a.attrs))
}

// Get returns all values associated with a key.
func (a *AttributeSet) Get(key string) []string {
	if a == nil {
		return nil
	}
	var values []string
	for _, attr := range a.attrs {
		if attr.Key == key {
			values = append(values, attr.Value)
		}
	}
	return values
}

// At returns the attribute at the given index, in key order.
func (a *AttributeSet) At(index uint64) *Attribute {
	if a == nil || index >= a.Len() {
		return nil
	}
	attr := a.attrs[index]
	return &attr
}

// All returns all attributes in the set.
func (a *AttributeSet) All() []Attribute {
	if a == nil {
		return nil
	}
	return append([]Attribute(nil), a.attrs...)
}

// maxSupportedAttributes bounds how many attributes one service carries.
const maxSupportedAttributes = 64

// AttributeSpecifier is used to define attributes when creating a service.
type AttributeSpecifier struct {
	attrs  []Attribute
	closed bool
}

// NewAttributeSpecifier creates a new AttributeSpecifier.
func NewAttributeSpecifier() (*AttributeSpecifier, error) {
	return &AttributeSpecifier{}, nil
}

// Close releases the resources associated with the AttributeSpecifier.
func (a *AttributeSpecifier) Close() error {
	if a != nil {
		a.closed = true
	}
	return nil
}

// Define adds a key-value attribute. Redefining a key overwrites the
// previous value.
func (a *AttributeSpecifier) Define(key, value string) error {
	if a == nil || a.closed {
		return ErrHandleClosed
	}
	for i, attr := range a.attrs {
		if attr.Key == key {
			a.attrs[i].Value = value
			return nil
		}
	}
	if len(a.attrs) >= maxSupportedAttributes {
		return AttributeDefinitionErrorExceedsMaxSupportedAttributes
	}
	a.attrs = append(a.attrs, Attribute{Key: key, Value: value})
	return nil
}

// AttributeVerifier is used to verify attributes when opening a service.
type AttributeVerifier struct {
	required     []Attribute
	requiredKeys []string
	closed       bool
}

// NewAttributeVerifier creates a new AttributeVerifier.
func NewAttributeVerifier() (*AttributeVerifier, error) {
	return &AttributeVerifier{}, nil
}

// Close releases the resources associated with the AttributeVerifier.
func (a *AttributeVerifier) Close() error {
	if a != nil {
		a.closed = true
	}
	return nil
}

// Require specifies that a key must have a specific value.
func (a *AttributeVerifier) Require(key, value string) error {
	if a == nil || a.closed {
		return ErrHandleClosed
	}
	a.required = append(a.required, Attribute{Key: key, Value: value})
	return nil
}

// RequireKey specifies that a key must exist (any value).
func (a *AttributeVerifier) RequireKey(key string) error {
	if a == nil || a.closed {
		return ErrHandleClosed
	}
	a.requiredKeys = append(a.requiredKeys, key)
	return nil
}

// VerifyRequirements checks a service's attribute set against the
// recorded requirements.
func (a *AttributeVerifier) VerifyRequirements(set *AttributeSet) error {
	if a == nil {
		return nil
	}
	for _, key := range a.requiredKeys {
		if len(set.Get(key)) == 0 {
			return AttributeVerificationErrorNonExistingKey
		}
	}
	for _, req := range a.required {
		values := set.Get(req.Key)
		if len(values) == 0 {
			return AttributeVerificationErrorNonExistingKey
		}
		found := false
		for _, v := range values {
			if v == req.Value {
				found = true
				break
			}
		}
		if !found {
			return AttributeVerificationErrorIncompatibleAttr
		}
	}
	return nil
}
