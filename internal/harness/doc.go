// Package harness runs YAML-described execution scenarios against CUE
// modules: compile the module, bind its callbacks to an external log,
// invoke it with a sequence of inputs, block on outstanding effects,
// and assert on the log, the outputs, and the effect journal.
//
// Scenarios exist to pin down observable ordering. The golden variant
// snapshots the full trace (outputs, log, firings) so a change in
// effect sequencing shows up as a golden diff.
package harness
