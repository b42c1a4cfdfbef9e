package activities

// Names used to register and invoke activities by name, rather than via a
// bound method value, so workflow code never needs a live *Activities
// receiver to reference an activity.
const (
	NameDiscoverClusters              = "DiscoverClusters"
	NameValidateCluster               = "ValidateCluster"
	NameCheckClusterHealth            = "CheckClusterHealth"
	NameCheckMaintenanceWindow        = "CheckMaintenanceWindow"
	NameDecommissionPod               = "DecommissionPod"
	NameDeletePod                     = "DeletePod"
	NameWaitForPodReady               = "WaitForPodReady"
	NameResetClusterRoutingAllocation = "ResetClusterRoutingAllocation"
	NameIsPodOnSuspendedNode          = "IsPodOnSuspendedNode"
)

// Register adds every activity method to w under its Name constant.
func (a *Activities) Register(register func(activity interface{}, name string)) {
	register(a.DiscoverClusters, NameDiscoverClusters)
	register(a.ValidateCluster, NameValidateCluster)
	register(a.CheckClusterHealth, NameCheckClusterHealth)
	register(a.CheckMaintenanceWindow, NameCheckMaintenanceWindow)
	register(a.DecommissionPod, NameDecommissionPod)
	register(a.DeletePod, NameDeletePod)
	register(a.WaitForPodReady, NameWaitForPodReady)
	register(a.ResetClusterRoutingAllocation, NameResetClusterRoutingAllocation)
	register(a.IsPodOnSuspendedNode, NameIsPodOnSuspendedNode)
}
