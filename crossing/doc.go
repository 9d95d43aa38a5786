// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package crossing provides a bounded, bidirectional mutual exclusion primitive: a single-lane crossing
that actors traverse in one of two directions.

Actors travelling in opposite directions are never on the crossing together, and at most the configured
capacity may be on it at once.  When the crossing empties, the permitted direction passes to actors
waiting for the other direction, so a continuous stream in one direction cannot starve the other.

The enter methods follow the same shape as a semaphore's acquire methods: Enter blocks, EnterWait
honors a timer channel, EnterCtx honors a context, and TryEnter never blocks.
*/
package crossing
