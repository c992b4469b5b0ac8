package ir

// Version is the IR schema version. Stamped on journal entries so stored
// effect traces can be interpreted after format changes.
const Version = "1"
