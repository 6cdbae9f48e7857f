// Package rules decides whether a discovered device may be paired with the
// local node.
//
// Two checks are applied in order:
//
//  1. Group: the candidate's group (the logical-name prefix of its device
//     name) must equal the local node's group, unless the local node is a
//     control panel, which accepts every group.
//  2. Allow list: the candidate's device type must be on the local node's
//     allow list. The zero AllowList rejects everything (fail closed).
//
// The functions in this package are pure: no state, no side effects.
package rules
