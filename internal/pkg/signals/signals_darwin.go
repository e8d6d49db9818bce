package signals

const maxSignal = 31
