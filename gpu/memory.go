package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

var (
	// ErrDevice marks errors where the device rejected a request.
	ErrDevice = errors.New("device rejected request")
	// ErrNoMemoryType is returned when no memory type satisfies a request.
	ErrNoMemoryType = errors.New("no suitable memory type")
)

// MemoryType is one entry of the physical device memory type table.
type MemoryType struct {
	PropertyFlags core1_0.MemoryPropertyFlags
}

// MemoryProperties is the physical device memory type table.
type MemoryProperties struct {
	MemoryTypes []MemoryType
}

// FindMemoryType returns the index of the first memory type that is
// allowed by typeFilter and has all of the requested properties.
func FindMemoryType(props *MemoryProperties, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	if props != nil {
		for i, memoryType := range props.MemoryTypes {
			if i >= 32 {
				break
			}
			typeBit := uint32(1 << i)

			if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
				return i, nil
			}
		}
	}

	return 0, errors.Wrapf(ErrNoMemoryType, "type filter %#x with properties %s", typeFilter, properties)
}

// CreateBuffer creates a buffer with memory of the requested properties
// bound at offset 0. Nothing is left allocated when it fails.
func CreateBuffer(dev Device, props *MemoryProperties, size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (Buffer, Memory, error) {
	buffer, err := dev.CreateBuffer(BufferCreateInfo{
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, nil, err
	}

	memRequirements := buffer.MemoryRequirements()
	memoryTypeIndex, err := FindMemoryType(props, memRequirements.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}

	memory, err := dev.AllocateMemory(MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}

	err = buffer.BindMemory(memory, 0)
	if err != nil {
		buffer.Destroy()
		memory.Free()
		return nil, nil, err
	}

	return buffer, memory, nil
}

// WriteData maps memory, copies data to offset and unmaps it again.
func WriteData(memory Memory, offset int, data []byte) error {
	dataBuffer, err := memory.Map(offset, len(data))
	if err != nil {
		return err
	}
	defer memory.Unmap()

	if len(dataBuffer) < len(data) {
		return errors.Newf("mapped range of %d bytes cannot hold %d bytes", len(dataBuffer), len(data))
	}

	copy(dataBuffer, data)
	return nil
}
