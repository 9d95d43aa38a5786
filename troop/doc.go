// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package troop simulates a troop of baboons crossing a canyon on a shared rope.

Each baboon is a goroutine with a direction and a transit time.  It enters the rope,
swings across for its transit time, and leaves.  A Report summarizes the run.
*/
package troop
