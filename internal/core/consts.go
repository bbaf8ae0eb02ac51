package core

// Values reported by StatFs.
const (
	blockSize  = 4096
	maxNameLen = 255
)

// access(2) mask bit requesting write permission.
const accessWrite = 0x2
