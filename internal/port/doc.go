// Package port implements host port availability scanning for the
// stagehand CLI.
//
// The Scanner probes ports with net.Listen / net.ListenPacket, asking the
// OS directly rather than parsing /proc/net/* or shelling out to tools
// like lsof that may need elevated permissions. It backs two CLI paths:
// "stagehand serve --port 0" picks a free port before binding, and
// "stagehand run" verifies the requested host port is free before
// docker run fails with a less helpful bind error.
package port
