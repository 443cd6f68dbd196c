// Package harness replays build scripts through the IR builder.
//
// A build script describes a module op by op, the way a front end would
// drive the builder. The harness builds it, verifies the result, optionally
// lowers it, and checks assertions against the finished module. Scripts are
// the fixtures behind the eir build and lower commands and the golden IR
// tests.
//
// # Script Format
//
//	module: demo
//	description: "classify a term"
//	target: x86_64-unknown-linux-gnu   # optional
//	lower: true                        # optional
//	declarations:
//	  - name: "demo:risky/0"
//	    params: []
//	functions:
//	  - name: "demo:classify/1"
//	    params: [{name: x}]
//	    blocks:
//	      - label: entry
//	        ops:
//	          - op: match
//	            args: x
//	            clauses:
//	              - pattern: {literal: {atom: ok}}
//	                body: {block: l1, args: x}
//	              - pattern: {type: atom}
//	                body: l2
//	      - label: l1
//	        args: [{name: a}]
//	        ops:
//	          - op: return
//	            args: a
//	assertions:
//	  - type: op_count
//	    op: throw
//	    count: 1
//
// Blocks are created before any op runs, so branches may name later
// blocks. Types use the IR type syntax and default to term. Each op's
// location is its line and column in the script.
//
// # Assertion Types
//
//   - op_count: the number of ops with a printed mnemonic
//   - declares: the module declares a symbol
//   - block_count: the number of blocks in a function
//   - contains: a function's printed IR contains some text
//   - rewrites: the number of rewrites a lowering rule applied
//
// A script with expect_error must fail to build with that error code; its
// assertions are not evaluated.
package harness
