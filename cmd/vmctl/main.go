// Command vmctl drives the virtual-memory core through a scripted
// scenario end to end: create an address space, define regions and a
// stack, bracket a simulated ELF load, fault pages, and fork. It exists
// to exercise the library the way a real trap handler and loader would,
// the same demonstration role biscuit's chentry plays for its build.
package main

import (
	"flag"
	"fmt"
	"log"

	"r3kvm/addrspace"
	"r3kvm/fault"
	"r3kvm/frame"
	"r3kvm/proc"
	"r3kvm/region"
	"r3kvm/tlb"
)

func main() {
	frames := flag.Int("frames", 4096, "number of simulated physical frames to reserve")
	flag.Parse()

	pool := frame.NewPool(*frames)
	t := tlb.New()

	addrspace.Bootstrap()
	as := addrspace.Create(pool)
	proc.SetCurrent(as)

	const textBase = 0x00400000
	const textSize = 0x1000
	if _, err := as.DefineRegion(textBase, textSize, region.PF_R|region.PF_X); err != 0 {
		log.Fatalf("define_region(text): %v", err)
	}
	sp, err := as.DefineStack()
	if err != 0 {
		log.Fatalf("define_stack: %v", err)
	}
	fmt.Printf("created address space, stack pointer = 0x%x\n", sp)

	if err := as.PrepareLoad(); err != 0 {
		log.Fatalf("prepare_load: %v", err)
	}
	if err := proc.VMFault(t, fault.Write, textBase); err != 0 {
		log.Fatalf("fault during load write: %v", err)
	}
	fmt.Printf("loader wrote into 0x%x while permissions were relaxed\n", textBase)

	if err := as.CompleteLoad(t); err != 0 {
		log.Fatalf("complete_load: %v", err)
	}
	fmt.Println("complete_load restored text to read+execute and hardened page entries")

	if err := proc.VMFault(t, fault.Read, textBase); err != 0 {
		log.Fatalf("unexpected fault on read after load: %v", err)
	}
	fmt.Println("read of text page after load: ok")

	if err := proc.VMFault(t, fault.Write, sp-4096); err != 0 {
		log.Fatalf("first-touch write into stack: %v", err)
	}
	fmt.Println("stack page demand-allocated on first touch")

	if err := proc.VMFault(t, fault.Read, textBase+textSize+0x10000); err == 0 {
		log.Fatal("unexpected success faulting an address outside every region")
	} else {
		fmt.Println("fault outside every region correctly rejected")
	}

	child, err := as.Copy(pool)
	if err != 0 {
		log.Fatalf("fork (as_copy): %v", err)
	}
	fmt.Printf("forked child address space; %s\n", pool.Report())

	child.Destroy()
	as.Destroy()
	fmt.Printf("destroyed both address spaces; %s\n", pool.Report())
}
