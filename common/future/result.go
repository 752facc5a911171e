// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package future

// Result encapsulates a value along with an error. It is intended to be used
// in scenarios where a single type is needed to represent the outcome of an
// operation that can either succeed with a value of type T or fail with an
// error, e.g. the entries of a batch of executions.
type Result[T any] struct {
	Value T
	Error error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

// From combines the two results of a call into a Result.
func From[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

// Get returns the value and error contained in the Result.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Error
}

// Future is the eventual Result of a function running in the background.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]
}

// Spawn runs the given function in a new goroutine.
func Spawn[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result = From(fn())
	}()
	return f
}

// Await blocks until the function has returned and provides its result. It
// may be called any number of times.
func (f *Future[T]) Await() Result[T] {
	<-f.done
	return f.result
}
