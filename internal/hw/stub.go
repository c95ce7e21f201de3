//go:build !linux

package hw

import (
	"errors"
	"time"
)

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chipName string, pin int) (*RealOutput, error) {
	return nil, errors.New("hw: gpio not supported on this platform (requires Linux)")
}

// DriveLow is not implemented on non-Linux platforms.
func (o *RealOutput) DriveLow() error { return errors.New("hw: gpio not supported") }

// Idle is not implemented on non-Linux platforms.
func (o *RealOutput) Idle() error { return errors.New("hw: gpio not supported") }

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error { return nil }

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	return nil, errors.New("hw: gpio not supported on this platform (requires Linux)")
}

// Events is not implemented on non-Linux platforms.
func (b *RealButton) Events() <-chan time.Time { return nil }

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error { return nil }
