package system

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultWorkers sizes a worker pool where every worker holds about
// bytesPerWorker of image buffers. It uses one worker per logical CPU and
// never plans to take more than half of the available memory.
func DefaultWorkers(bytesPerWorker uint64) int {
	workers, err := cpu.Counts(true)
	if err != nil || workers < 1 {
		workers = runtime.NumCPU()
	}

	if bytesPerWorker > 0 {
		if vm, err := mem.VirtualMemory(); err == nil {
			workers = capWorkers(workers, vm.Available/2, bytesPerWorker)
		}
	}
	return workers
}

func capWorkers(workers int, budget, bytesPerWorker uint64) int {
	if limit := budget / bytesPerWorker; uint64(workers) > limit {
		workers = int(limit)
	}
	return max(workers, 1)
}

// Stats describes memory use of the process and the machine.
func Stats() (string, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "", err
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return "", err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RSS %.1f MB | RAM %.1f%% занято, %.1f GB свободно",
		float64(info.RSS)/(1<<20), vm.UsedPercent, float64(vm.Available)/(1<<30)), nil
}
