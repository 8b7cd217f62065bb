//go:build !nogpu

package main

import (
	// Register the Vulkan HAL so the native backend can open a device.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)
