package signals

// maxSignal bounds numeric identifiers, realtime signals included.
const maxSignal = 64
