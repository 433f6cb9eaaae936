package system

import (
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemoryStats describes the memory use of this process and the host.
type MemoryStats struct {
	RSS       uint64
	VMS       uint64
	HostTotal uint64
	HostUsed  float64 // percent
}

// ReadMemory samples memory use via gopsutil.
func ReadMemory() (MemoryStats, error) {
	var st MemoryStats
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return st, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return st, err
	}
	st.RSS, st.VMS = info.RSS, info.VMS

	if vm, err := mem.VirtualMemory(); err == nil {
		st.HostTotal = vm.Total
		st.HostUsed = vm.UsedPercent
	}
	return st, nil
}
