// Package flash defines the raw flash partition contract consumed by the slot
// store, plus two NOR-semantics implementations.
//
// A partition is divided into equally sized sectors. Writes may only clear
// bits (1 -> 0); returning a region to all-ones requires erasing the whole
// sector that contains it. Both implementations enforce this, so code that
// forgets to erase before rewriting behaves here as it would on the device.
//
//	p := flash.NewMem(flash.Geometry{SectorSize: 4096, SectorCount: 8, WriteBlockSize: 4})
//	info := p.PageInfo()
//	_ = p.Write(0, buf)
//	_ = p.Erase(0, info.SectorSize)
package flash
