package common

import "github.com/kdice/kdice/options"

type MissingWorkloadError struct{}

func (err MissingWorkloadError) Error() string {
	return "No workload descriptor: pass --workload or create " + options.DefaultWorkloadFile
}

type MissingKernelSrcError struct{}

func (err MissingKernelSrcError) Error() string {
	return "No kernel source tree: pass --kernel-src or set source in the kernel block of the workload descriptor"
}
